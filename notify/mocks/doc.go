package mocks

//go:generate mockgen -destination=mock_notify.go -package=mocks github.com/RogueTeam/remit/notify Sender,Preferences
