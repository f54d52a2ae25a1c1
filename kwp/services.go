package kwp

import "fmt"

// KWP2000 (ISO 14230) service identifiers.
const (
	ServiceStartCommunication            byte = 0x81
	ServiceStopCommunication             byte = 0x82
	ServiceSecurityAccess                 byte = 0xE1
	ServiceReadDataByLocalIdentifier      byte = 0xA1
	ServiceReadDataByCommonIdentifier      byte = 0xA2
	ServiceReadMemoryByAddress             byte = 0xA3
	ServiceReadScalingDataByIdentifier     byte = 0xA4
	ServiceReadDataByPeriodicIdentifier    byte = 0xA5
	ServiceDynamicallyDefineDataIdentifier byte = 0xA6
	ServiceWriteDataByLocalIdentifier       byte = 0xB1
	ServiceWriteDataByCommonIdentifier      byte = 0xB2
	ServiceWriteMemoryByAddress             byte = 0xB3
	ServiceStartRoutineByLocalIdentifier    byte = 0xC1
	ServiceStopRoutineByLocalIdentifier     byte = 0xC2
	ServiceStartRoutineByAddress            byte = 0xC3
	ServiceStopRoutineByAddress             byte = 0xC4
	ServiceRequestRoutineResultsByLocalIdentifier byte = 0xC5
	ServiceRequestRoutineResultsByAddress   byte = 0xC6
	ServiceTesterPresent                    byte = 0x3E
	ServiceTransportLayer                   byte = 0xF0
)

var serviceNames = map[byte]string{
	ServiceStartCommunication:                     "Start Communication",
	ServiceStopCommunication:                       "Stop Communication",
	ServiceSecurityAccess:                          "Security Access",
	ServiceReadDataByLocalIdentifier:               "Read Data By Local Identifier",
	ServiceReadDataByCommonIdentifier:              "Read Data By Common Identifier",
	ServiceReadMemoryByAddress:                      "Read Memory By Address",
	ServiceReadScalingDataByIdentifier:              "Read Scaling Data By Identifier",
	ServiceReadDataByPeriodicIdentifier:             "Read Data By Periodic Identifier",
	ServiceDynamicallyDefineDataIdentifier:          "Dynamically Define Data Identifier",
	ServiceWriteDataByLocalIdentifier:               "Write Data By Local Identifier",
	ServiceWriteDataByCommonIdentifier:              "Write Data By Common Identifier",
	ServiceWriteMemoryByAddress:                     "Write Memory By Address",
	ServiceStartRoutineByLocalIdentifier:            "Start Routine By Local Identifier",
	ServiceStopRoutineByLocalIdentifier:             "Stop Routine By Local Identifier",
	ServiceStartRoutineByAddress:                    "Start Routine By Address",
	ServiceStopRoutineByAddress:                     "Stop Routine By Address",
	ServiceRequestRoutineResultsByLocalIdentifier:   "Request Routine Results By Local Identifier",
	ServiceRequestRoutineResultsByAddress:           "Request Routine Results By Address",
	ServiceTesterPresent:                            "Tester Present",
	ServiceTransportLayer:                           "Transport Layer",
}

func serviceLabel(sid byte) string {
	if name, ok := serviceNames[sid]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", sid)
}
