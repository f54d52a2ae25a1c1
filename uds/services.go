package uds

import "fmt"

// UDS (ISO 14229) service identifiers this encoder supports.
const (
	ServiceDiagnosticSessionControl byte = 0x10
	ServiceECUReset                 byte = 0x11
	ServiceSecurityAccess           byte = 0x27
	ServiceReadDataByIdentifier     byte = 0x22
	ServiceReadMemoryByAddress      byte = 0x23
	ServiceWriteMemoryByAddress     byte = 0x3D
	ServiceRoutineControl          byte = 0x31
	ServiceCommunicationControl    byte = 0x28
	ServiceControlDTCSetting       byte = 0x85
	ServiceTesterPresent            byte = 0x3E
)

var serviceNames = map[byte]string{
	ServiceDiagnosticSessionControl: "Diagnostic Session Control",
	ServiceECUReset:                 "ECU Reset",
	ServiceSecurityAccess:           "Security Access",
	ServiceReadDataByIdentifier:     "Read Data By Identifier",
	ServiceReadMemoryByAddress:      "Read Memory By Address",
	ServiceWriteMemoryByAddress:     "Write Memory By Address",
	ServiceRoutineControl:           "Routine Control",
	ServiceCommunicationControl:    "Communication Control",
	ServiceControlDTCSetting:       "Control DTC Setting",
	ServiceTesterPresent:            "Tester Present",
}

func serviceLabel(sid byte) string {
	if name, ok := serviceNames[sid]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", sid)
}
