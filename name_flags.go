package dbuslink

// NameFlags is the bitmask accepted by RequestName's flags argument,
// per the D-Bus bus-messages specification (grounded on
// original_source/src/name_flag.rs's DBusNameFlag bitflags).
type NameFlags uint32

const (
	// NameFlagAllowReplacement lets another connection's subsequent
	// RequestName with NameFlagReplaceExisting take the name away.
	NameFlagAllowReplacement NameFlags = 0x01
	// NameFlagReplaceExisting asks the daemon to evict the current
	// owner if that owner set NameFlagAllowReplacement.
	NameFlagReplaceExisting NameFlags = 0x02
	// NameFlagDoNotQueue asks the daemon not to place the caller in
	// the name's waiting queue if the name is already owned.
	NameFlagDoNotQueue NameFlags = 0x04
)

// RequestNameReply mirrors the four outcomes org.freedesktop.DBus's
// RequestName method returns.
type RequestNameReply uint32

const (
	RequestNamePrimaryOwner RequestNameReply = 1
	RequestNameInQueue      RequestNameReply = 2
	RequestNameExists       RequestNameReply = 3
	RequestNameAlreadyOwner RequestNameReply = 4
)
