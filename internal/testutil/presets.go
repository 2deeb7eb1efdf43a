package testutil

// WithStandardTestData seeds a small registry: two projects, one with two
// releases and one empty.
func (b *Builder) WithStandardTestData() *Builder {
	return b.
		WithProject("anvil").
		WithPackage("widget", "widget-1.0.tar.gz", Version("1.0"), Summary("A widget")).
		WithPackage("widget", "widget-1.1.tar.gz", Version("1.1"), Summary("A widget"))
}
