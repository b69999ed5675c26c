// ABOUTME: Build identity for resonate-scope
// ABOUTME: Reported in the render hub hello and the startup log
package version

const (
	// Version is the release version
	Version = "0.1.0"

	// Product is the product name
	Product = "Resonate Scope"

	// Manufacturer identifies the publisher
	Manufacturer = "Resonate"
)
