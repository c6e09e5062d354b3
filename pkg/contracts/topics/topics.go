package topics

const (
	// Corridas
	RaceTelemetry = "race_telemetry"
	RaceFinished  = "race_finished"

	// Apostas (wagers)
	WagerAccepted = "wager_accepted"
	WagerSettled  = "wager_settled"

	// Pink slips
	PinkSlipTransferred = "pinkslip_transferred"

	// DLQs
	RaceFinishedDLQ = "race_finished_dlq"
	WagerSettledDLQ = "wager_settled_dlq"
)
