package results

// SetEditorQueryMsg tells the app to put SQL in the editor pane.
type SetEditorQueryMsg struct {
	Database string
	SQL      string
}

// StatusNotifyMsg tells the app to show a message in the status bar.
type StatusNotifyMsg struct {
	Message string
}
