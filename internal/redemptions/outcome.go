package redemptions

// Outcome classifies a redemption attempt. Clients key their result screen on
// it, and on the words "already" and "expired" in the message.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeInvalid Outcome = "invalid"
	OutcomeExpired Outcome = "expired"
	OutcomeAlready Outcome = "already"
)

const (
	msgSuccess         = "Redemption successful!"
	msgTokenNotFound   = "Token not found"
	msgAlreadyRedeemed = "This code has already been redeemed"
	msgCodeExpired     = "This code has expired"
	msgOfferInactive   = "This offer is no longer active"
	msgDailyCapReached = "Daily redemption limit reached for this offer"
	msgUnknownLocation = "Location is not registered for this merchant"
)

func msgOutsideHours(activeHours string) string {
	return "This offer is only available " + activeHours
}
