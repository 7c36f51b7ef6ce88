package setup

import "context"

// ErrorCode classifies a failed or aborted setup flow.
type ErrorCode string

const (
	ErrorOther     ErrorCode = "OTHER"
	ErrorUserAbort ErrorCode = "USER_ABORT"
)

// Message is one inbound step of the onboarding flow.
type Message interface {
	isSetupMessage()
}

// DriverSetupRequest starts the flow; SetupData carries the requested
// camera count.
type DriverSetupRequest struct {
	Reconfigure bool
	SetupData   map[string]string
}

// UserDataResponse carries the filled-in camera form.
type UserDataResponse struct {
	InputValues map[string]string
}

// UserConfirmationResponse answers the summary screen.
type UserConfirmationResponse struct {
	Confirm bool
}

// AbortSetup is sent when the user or the remote cancels the flow.
type AbortSetup struct {
	Code ErrorCode
}

func (DriverSetupRequest) isSetupMessage()       {}
func (UserDataResponse) isSetupMessage()         {}
func (UserConfirmationResponse) isSetupMessage() {}
func (AbortSetup) isSetupMessage()               {}

// Action is the flow's reply to a message: the next screen, completion or
// an error.
type Action interface {
	isSetupAction()
}

// Setting is one form field shown to the user.
type Setting struct {
	ID    string
	Label string
	Value string
}

// RequestUserInput asks the user to fill in a form.
type RequestUserInput struct {
	Title    string
	Settings []Setting
}

// RequestUserConfirmation shows a summary awaiting confirmation.
type RequestUserConfirmation struct {
	Title  string
	Header string
	Footer string
}

// Complete signals the configuration was saved; the driver reinitializes.
type Complete struct{}

// Error aborts the flow.
type Error struct {
	Code ErrorCode
}

func (RequestUserInput) isSetupAction()        {}
func (RequestUserConfirmation) isSetupAction() {}
func (Complete) isSetupAction()                {}
func (Error) isSetupAction()                   {}

type IService interface {
	HandleSetup(ctx context.Context, msg Message) Action
}
