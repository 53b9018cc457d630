/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package ledger

// appendUnique appends v to list if it isn't already present, preserving
// first-insertion order. Used for retrievedRuleIds/toolsUsed/filesTouched,
// which behave as ordered sets.
func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
