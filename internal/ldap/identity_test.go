package ldap

import (
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S-1-5-21-1004336348-1177238915-682003330-512
var testSIDBytes = []byte{
	0x01, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
	0x15, 0x00, 0x00, 0x00,
	0xdc, 0xf4, 0xdc, 0x3b,
	0x83, 0x3d, 0x2b, 0x46,
	0x82, 0x8b, 0xa6, 0x28,
	0x00, 0x02, 0x00, 0x00,
}

// 3f2504e0-4f89-11d3-9a0c-0305e82c3301 in Active Directory byte order
var testGUIDBytes = []byte{
	0xe0, 0x04, 0x25, 0x3f,
	0x89, 0x4f,
	0xd3, 0x11,
	0x9a, 0x0c, 0x03, 0x05, 0xe8, 0x2c, 0x33, 0x01,
}

func TestDecodeSID(t *testing.T) {
	sid, err := decodeSID(testSIDBytes)
	require.NoError(t, err)
	assert.Equal(t, "S-1-5-21-1004336348-1177238915-682003330-512", sid)

	_, err = decodeSID(nil)
	assert.Error(t, err)

	_, err = decodeSID(testSIDBytes[:12])
	assert.Error(t, err)
}

func TestDecodeGUID(t *testing.T) {
	guid, err := decodeGUID(testGUIDBytes)
	require.NoError(t, err)
	assert.Equal(t, "3f2504e0-4f89-11d3-9a0c-0305e82c3301", guid)

	_, err = decodeGUID(testGUIDBytes[:8])
	assert.Error(t, err)
}

func TestEntryToComputer(t *testing.T) {
	entry := &ldap.Entry{
		DN: "CN=VDI-JS06,OU=Workstations,DC=corp,DC=local",
		Attributes: []*ldap.EntryAttribute{
			{Name: "cn", Values: []string{"VDI-JS06"}, ByteValues: [][]byte{[]byte("VDI-JS06")}},
			{Name: "objectSid", Values: []string{string(testSIDBytes)}, ByteValues: [][]byte{testSIDBytes}},
			{Name: "objectGUID", Values: []string{string(testGUIDBytes)}, ByteValues: [][]byte{testGUIDBytes}},
		},
	}

	computer := entryToComputer(entry)
	require.NotNil(t, computer)
	assert.Equal(t, "VDI-JS06", computer.CN)
	assert.Equal(t, entry.DN, computer.DN)
	assert.Equal(t, "S-1-5-21-1004336348-1177238915-682003330-512", computer.SID)
	assert.Equal(t, "3f2504e0-4f89-11d3-9a0c-0305e82c3301", computer.GUID)

	bare := entryToComputer(&ldap.Entry{DN: "CN=X,DC=corp,DC=local"})
	require.NotNil(t, bare)
	assert.Empty(t, bare.SID)
	assert.Empty(t, bare.GUID)

	assert.Nil(t, entryToComputer(nil))
}
