package models

// LocalSession is the device-persisted record that lets a client resume a
// live split after a reload. It is replaced wholesale on every relevant
// transition and removed on leave, end, or reset.
type LocalSession struct {
	PIN              string `json:"pin"`
	ParticipantID    string `json:"participantId"`
	ParticipantName  string `json:"participantName"`
	ParticipantColor string `json:"participantColor"`
	IsHost           bool   `json:"isHost"`
}
