package mocks

//go:generate mockgen -destination=mock_rails.go -package=mocks github.com/RogueTeam/remit/rails Acquirer,Custodial,Blockchain
