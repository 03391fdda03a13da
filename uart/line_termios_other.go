//go:build !linux

package uart

// TermiosOpener is only available on Linux; use BugstOpener elsewhere.
func TermiosOpener(path string) Opener {
	return func(Config) (Line, error) {
		return nil, ErrUnsupported
	}
}
