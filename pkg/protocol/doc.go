// Package protocol implements the collabmd websocket wire format.
//
// Every websocket text frame carries one JSON envelope:
//
//	{"event": "<name>", "data": <payload>}
//
// # Client → Server
//
//   - join-session: {sessionId, userName, userColor}
//   - content-change: {sessionId, content, cursorPosition, selectionStart, selectionEnd}
//   - cursor-move: {sessionId, cursorPosition, selectionStart, selectionEnd}
//
// # Server → Client
//
//   - session-state: {content, users, cursors}, sent to the joiner only
//   - user-joined: {id, name, color}
//   - content-updated: {content, cursor?}
//   - cursor-updated: {userId, userName, userColor, position, selectionStart?, selectionEnd?}
//   - user-left: "<connection id>"
//   - error: {code, message}, sent to the offending sender only
//
// # Validation
//
// Decode checks required keys before unmarshaling, so an absent field and a
// zero value are told apart. Selection bounds are optional but must be sent
// together. A JSON null counts as absent. Failures are reported as
// *DecodeError carrying one of the Code constants.
package protocol
