package internal

const (
	COOKIE_SESSION_NAME  = "neurolink_session"
	COOKIE_DRAFT_NAME    = "neurolink_draft"
	COOKIE_REDIRECT_NAME = "neurolink_redirect"
)
