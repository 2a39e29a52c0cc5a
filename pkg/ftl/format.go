package ftl

// On-disk header constants for a future persisted mapping-table
// format, carried over from the original driver's struct layout for
// forward compatibility. Mapping-table persistence across process
// restarts is out of scope for this package (every Target starts with
// an empty map); nothing here is read or written.
//
// TODO: wire this into New/Close once persistence is in scope.
const (
	magicNumber   = 0x72927048
	formatVersion = 1
)
