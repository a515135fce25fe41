package apps

import "fmt"

// LaunchError reports that an app could not be started. Message is the
// localized, user-facing text and always names the app.
type LaunchError struct {
	App     InstalledApp
	Message string
	Err     error
}

func (e *LaunchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
