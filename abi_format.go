package main

import (
	"bytes"
	"encoding/json"
)

// FormatABI pretty-prints abi with two-space indentation so generated
// bindings (graph codegen) can consume it. Text that is not JSON, such as
// "Contract source code not verified", is returned as is.
func FormatABI(abi string) string {
	var out bytes.Buffer
	if err := json.Indent(&out, []byte(abi), "", "  "); err != nil {
		return abi
	}
	return out.String()
}
