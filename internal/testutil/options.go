package testutil

type packageData struct {
	project  string
	filename string
	guid     string
	author   string
	summary  string
	sha256   string
	version  string
}

func defaultPackage(project, filename string) packageData {
	return packageData{
		project:  project,
		filename: filename,
		guid:     "00000000-0000-0000-0000-000000000000",
		version:  "0.1",
	}
}

// PackageOption customizes a queued package row.
type PackageOption func(*packageData)

// Version sets the package version.
func Version(v string) PackageOption {
	return func(p *packageData) { p.version = v }
}

// Author sets the package author.
func Author(a string) PackageOption {
	return func(p *packageData) { p.author = a }
}

// Summary sets the package summary.
func Summary(s string) PackageOption {
	return func(p *packageData) { p.summary = s }
}

// SHA256 sets the declared digest.
func SHA256(digest string) PackageOption {
	return func(p *packageData) { p.sha256 = digest }
}

// GUID sets the package guid.
func GUID(guid string) PackageOption {
	return func(p *packageData) { p.guid = guid }
}
