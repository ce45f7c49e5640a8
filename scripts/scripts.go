// Package scripts embeds the bundled generator scripts. Each script under
// gen/ reads the reflection database through the runtime host functions and
// writes its output with emit.
package scripts

import "embed"

//go:embed gen/*.risor
var FS embed.FS

// Generators lists the bundled generator names.
var Generators = []string{"registry", "report"}
