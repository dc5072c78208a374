package onchain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Read-only surface of the ProofOfIntelligence contract.
const ledgerABIJSON = `[
	{
		"name": "currentPredictionRound",
		"type": "function",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"name": "predictionRounds",
		"type": "function",
		"stateMutability": "view",
		"inputs": [{"name": "", "type": "uint256"}],
		"outputs": [
			{"name": "forBlockNumber", "type": "uint256"},
			{"name": "startTime", "type": "uint256"},
			{"name": "submissionDeadline", "type": "uint256"},
			{"name": "predictionCount", "type": "uint256"},
			{"name": "finalized", "type": "bool"},
			{"name": "winnerAgent", "type": "string"},
			{"name": "actualPrice", "type": "int256"}
		]
	},
	{
		"name": "getRoundParticipants",
		"type": "function",
		"stateMutability": "view",
		"inputs": [{"name": "roundId", "type": "uint256"}],
		"outputs": [{"name": "", "type": "string[]"}]
	},
	{
		"name": "getAgent",
		"type": "function",
		"stateMutability": "view",
		"inputs": [{"name": "agentAddress", "type": "string"}],
		"outputs": [
			{"name": "agentAddress", "type": "string"},
			{"name": "agentWalletAddress", "type": "string"},
			{"name": "totalGuesses", "type": "uint256"},
			{"name": "bestGuesses", "type": "uint256"},
			{"name": "accuracy", "type": "uint256"},
			{"name": "lastGuessBlock", "type": "uint256"},
			{"name": "deviation", "type": "uint256"}
		]
	},
	{
		"name": "roundPredictions",
		"type": "function",
		"stateMutability": "view",
		"inputs": [
			{"name": "roundId", "type": "uint256"},
			{"name": "agentAddress", "type": "string"}
		],
		"outputs": [
			{"name": "agentAddress", "type": "string"},
			{"name": "predictedPrice", "type": "int256"},
			{"name": "timestamp", "type": "uint256"},
			{"name": "submitted", "type": "bool"}
		]
	}
]`

const (
	methodCurrentRound = "currentPredictionRound"
	methodRound        = "predictionRounds"
	methodParticipants = "getRoundParticipants"
	methodAgent        = "getAgent"
	methodPrediction   = "roundPredictions"
)

var ledgerABI abi.ABI

func init() {
	var err error
	ledgerABI, err = abi.JSON(strings.NewReader(ledgerABIJSON))
	if err != nil {
		panic("ledger abi parse: " + err.Error())
	}
}
