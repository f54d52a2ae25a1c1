package kwp

import "fmt"

// KWP2000 Negative Response Codes. The table mirrors UDS's in the same
// byte positions; 0x22 carries KWP's combined "conditions not correct or
// request sequence error" meaning.
const (
	NRCGeneralReject                             byte = 0x10
	NRCServiceNotSupported                       byte = 0x11
	NRCSubFunctionNotSupported                   byte = 0x12
	NRCIncorrectMessageLengthOrInvalidFormat     byte = 0x13
	NRCConditionsNotCorrectOrRequestSequenceError byte = 0x22
	NRCRequestOutOfRange                         byte = 0x31
	NRCSecurityAccessDenied                      byte = 0x33
	NRCInvalidKey                                byte = 0x35
	NRCExceededNumberOfAttempts                  byte = 0x36
	NRCRequiredTimeDelayNotExpired               byte = 0x37
	NRCGeneralProgrammingFailure                 byte = 0x72
	NRCRequestCorrectlyReceivedResponsePending   byte = 0x78
)

var nrcNames = map[byte]string{
	NRCGeneralReject:                             "General Reject",
	NRCServiceNotSupported:                       "Service Not Supported",
	NRCSubFunctionNotSupported:                   "SubFunction Not Supported",
	NRCIncorrectMessageLengthOrInvalidFormat:     "Incorrect Message Length or Invalid Format",
	NRCConditionsNotCorrectOrRequestSequenceError: "Conditions Not Correct or Request Sequence Error",
	NRCRequestOutOfRange:                         "Request Out of Range",
	NRCSecurityAccessDenied:                      "Security Access Denied",
	NRCInvalidKey:                                "Invalid Key",
	NRCExceededNumberOfAttempts:                  "Exceeded Number of Attempts",
	NRCRequiredTimeDelayNotExpired:               "Required Time Delay Not Expired",
	NRCGeneralProgrammingFailure:                 "General Programming Failure",
	NRCRequestCorrectlyReceivedResponsePending:   "Request Correctly Received - Response Pending",
}

func nrcLabel(nrc byte) string {
	if name, ok := nrcNames[nrc]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", nrc)
}
