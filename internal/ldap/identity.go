package ldap

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/go-objectsid"
	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
)

// guidBytesLength is the size of a binary objectGUID.
const guidBytesLength = 16

// computerAttributes are requested for every computer search.
var computerAttributes = []string{"cn", "distinguishedName", "objectSid", "objectGUID"}

// decodeSID converts a binary objectSid to its S-1-5-21-... form.
func decodeSID(binarySID []byte) (string, error) {
	if len(binarySID) == 0 {
		return "", fmt.Errorf("binary SID cannot be empty")
	}
	// Revision byte plus sub-authority count plus 6-byte authority
	if len(binarySID) < 8 || len(binarySID) < 8+4*int(binarySID[1]) {
		return "", fmt.Errorf("binary SID too short: %d bytes", len(binarySID))
	}

	sid := objectsid.Decode(binarySID)
	return sid.String(), nil
}

// decodeGUID converts a binary objectGUID from Active Directory's mixed-endian
// layout to its canonical hyphenated string.
func decodeGUID(guidBytes []byte) (string, error) {
	if len(guidBytes) != guidBytesLength {
		return "", fmt.Errorf("invalid GUID byte length: expected %d, got %d", guidBytesLength, len(guidBytes))
	}

	var u uuid.UUID
	// Data1, Data2 and Data3 are little-endian; Data4 is kept as-is
	u[0], u[1], u[2], u[3] = guidBytes[3], guidBytes[2], guidBytes[1], guidBytes[0]
	u[4], u[5] = guidBytes[5], guidBytes[4]
	u[6], u[7] = guidBytes[7], guidBytes[6]
	copy(u[8:], guidBytes[8:])

	return strings.ToLower(u.String()), nil
}

// entryToComputer maps a search result entry to a ComputerEntry. Undecodable
// identity attributes are left empty.
func entryToComputer(entry *ldap.Entry) *ComputerEntry {
	if entry == nil {
		return nil
	}

	computer := &ComputerEntry{
		DN: entry.DN,
		CN: entry.GetAttributeValue("cn"),
	}

	if sid, err := decodeSID(entry.GetRawAttributeValue("objectSid")); err == nil {
		computer.SID = sid
	}
	if guid, err := decodeGUID(entry.GetRawAttributeValue("objectGUID")); err == nil {
		computer.GUID = guid
	}

	return computer
}
