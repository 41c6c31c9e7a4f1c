package version

// Build information (injected via ldflags - must NOT have default values)
var (
	Version   string
	GitSHA    string
	BuildDate string
)

// BuildMarker is bumped by hand to tell flashed images apart on the serial banner.
const BuildMarker = "pax-003"

// String returns a one-line build description for the banner and the CLI.
func String() string {
	v := Version
	if v == "" {
		v = "dev"
	}
	if GitSHA != "" {
		v += "+" + GitSHA
	}
	return v + " (" + BuildMarker + ")"
}
