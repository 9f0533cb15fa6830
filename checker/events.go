package checker

import "github.com/lukemcguire/statusaudit/result"

// CheckEvent reports progress for a single checked URL.
type CheckEvent struct {
	URL          string
	StatusCode   int
	ErrorKind    result.ErrorKind
	RedirectType int
	Checked      int
	Errors       int
	Total        int
}
