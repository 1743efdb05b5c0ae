package permission

import "math/bits"

// Mask is a 64-bit capability set. Each primitive capability owns exactly one
// bit; aggregates are unions of primitives.
type Mask uint64

// Primitive capabilities. Bit positions are part of the persisted format and
// of issued access tokens and must never be reordered.
const (
	ViewUsers Mask = 1 << iota
	CreateUsers
	UpdateUsers
	DeleteUsers
	ManageUserRoles
	ViewUserDetails

	ViewProducts
	CreateProducts
	UpdateProducts
	DeleteProducts
	ManageProductCategories
	ViewProductDetails
	ProductBulkOperations

	ViewSystemLogs
	ManageSystem
	BackupRestore
	ManagePermissions

	ViewReports
	GenerateReports
	ViewAnalytics
)

// None grants nothing.
const None Mask = 0

// Aggregates.
const (
	BasicUser = ViewProducts | ViewProductDetails

	ProductManager = ViewProducts | CreateProducts | UpdateProducts |
		ViewProductDetails | ManageProductCategories | ProductBulkOperations

	UserManager = ViewUsers | CreateUsers | UpdateUsers | ManageUserRoles | ViewUserDetails

	SystemAdmin = ViewSystemLogs | ManageSystem | BackupRestore | ManagePermissions

	// Administrator deliberately omits ProductBulkOperations.
	Administrator = ViewUsers | CreateUsers | UpdateUsers | DeleteUsers | ManageUserRoles | ViewUserDetails |
		ViewProducts | CreateProducts | UpdateProducts | DeleteProducts | ManageProductCategories | ViewProductDetails |
		ViewSystemLogs | ManageSystem | BackupRestore | ManagePermissions |
		ViewReports | GenerateReports | ViewAnalytics
)

// primitiveCount is the number of defined primitive bits.
const primitiveCount = 20

// All is the union of every defined primitive bit.
const All Mask = 1<<primitiveCount - 1

// Has reports whether every bit of c is set in m. c may be a single
// capability or an aggregate. Has(m, None) is always true.
func Has(m, c Mask) bool {
	return m&c == c
}

// HasAll reports whether m holds every capability in cs.
func HasAll(m Mask, cs ...Mask) bool {
	for _, c := range cs {
		if !Has(m, c) {
			return false
		}
	}
	return true
}

// HasAny reports whether m holds at least one of cs. It is false when cs is
// empty.
func HasAny(m Mask, cs ...Mask) bool {
	for _, c := range cs {
		if Has(m, c) {
			return true
		}
	}
	return false
}

// NamesOf returns the names of the primitive capabilities set in m in
// ascending bit order. Bits with no primitive name are skipped.
func NamesOf(m Mask) []string {
	names := make([]string, 0, bits.OnesCount64(uint64(m&All)))
	for bit := 0; bit < primitiveCount; bit++ {
		if m&(1<<bit) != 0 {
			names = append(names, primitiveNames[bit])
		}
	}
	return names
}

// Has is the method form of [Has].
func (m Mask) Has(c Mask) bool { return Has(m, c) }

// Set returns m with c added.
func (m Mask) Set(c Mask) Mask { return m | c }

// Clear returns m with c removed.
func (m Mask) Clear(c Mask) Mask { return m &^ c }

// Raw returns the mask as a plain integer for storage and claims.
func (m Mask) Raw() uint64 { return uint64(m) }

// Names is the method form of [NamesOf].
func (m Mask) Names() []string { return NamesOf(m) }

var primitiveNames = [primitiveCount]string{
	"ViewUsers",
	"CreateUsers",
	"UpdateUsers",
	"DeleteUsers",
	"ManageUserRoles",
	"ViewUserDetails",
	"ViewProducts",
	"CreateProducts",
	"UpdateProducts",
	"DeleteProducts",
	"ManageProductCategories",
	"ViewProductDetails",
	"ProductBulkOperations",
	"ViewSystemLogs",
	"ManageSystem",
	"BackupRestore",
	"ManagePermissions",
	"ViewReports",
	"GenerateReports",
	"ViewAnalytics",
}
