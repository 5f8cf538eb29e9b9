package payment

var responseMessages = map[string]string{
	"00": "Transaction successful",
	"07": "Money deducted, transaction flagged as suspicious",
	"09": "Card or account is not registered for internet banking",
	"10": "Card or account authentication failed more than 3 times",
	"11": "Payment window expired",
	"12": "Card or account is locked",
	"13": "Wrong OTP entered",
	"24": "Customer cancelled the transaction",
	"51": "Insufficient balance",
	"65": "Daily transaction limit exceeded",
	"75": "Issuing bank under maintenance",
	"79": "Wrong payment password entered too many times",
	"99": "Other error",
}

// DescribeResponse returns a human readable text for a gateway response code.
func DescribeResponse(code string) string {
	if m, ok := responseMessages[code]; ok {
		return m
	}
	return "Unknown response code " + code
}

// IPN acknowledgement codes expected by the gateway.
const (
	IPNConfirmed        = "00"
	IPNOrderNotFound    = "01"
	IPNAlreadyConfirmed = "02"
	IPNInvalidAmount    = "04"
	IPNInvalidChecksum  = "97"
	IPNUnknownError     = "99"
)

// IPNResponse is the body the gateway expects from the IPN endpoint. It is
// always sent with HTTP 200.
type IPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}
