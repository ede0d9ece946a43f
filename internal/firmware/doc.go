// Package firmware fetches the latest published BIOS version for a board from
// the vendor support API.
//
// The vendor answers with a JSON envelope:
//
//	{"Result": {"Obj": [{"Name": "BIOS", "Files": [{"Version": "4602", ...}]}]}, "Status": "SUCCESS"}
//
// Only Result.Obj[0].Files[0].Version is used for comparison. A version is a
// plain integer; no major.minor structure is implied.
package firmware
