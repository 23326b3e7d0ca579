package domain

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Success messages shared by every mutating operation.
const (
	MsgUserCreated             = "User created successfully"
	MsgAdCreated               = "Ad created successfully"
	MsgAdUpdated               = "Ad updated successfully"
	MsgAdDeleted               = "Ad deleted successfully"
	MsgAdAddedToFavourites     = "Ad added to favourites"
	MsgAdRemovedFromFavourites = "Ad removed from favourites"
	MsgLoggedIn                = "Logged in successfully"
	MsgLoggedOut               = "Logged out successfully"
)

// Response is the {status, message} envelope.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func OK(message string) Response {
	return Response{Status: StatusOK, Message: message}
}

func Failure(message string) Response {
	return Response{Status: StatusError, Message: message}
}
