package model

// Session carries the credentials and connectivity an operation runs with.
// It is passed explicitly instead of living in process globals.
type Session struct {
	TabID       *int64
	AccessToken string
	SheetID     string
	Online      bool
}

// Authenticated reports whether both a token and a sheet id are present.
func (s Session) Authenticated() bool {
	return s.AccessToken != "" && s.SheetID != ""
}

// CanSync reports whether a sync pass may run right now.
func (s Session) CanSync() bool {
	return s.Online && s.Authenticated()
}

// StoredSession is the persisted part of a session.
type StoredSession struct {
	TabID   *int64 `json:"sheetTabId,omitempty"`
	SheetID string `json:"sheetId"`
}
