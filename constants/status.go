package constants

// FileStatus is the lifecycle status for rows in the files table.
type FileStatus string

// Stable values (store these exact strings in DB).
const (
	FileStatusUploaded FileStatus = "uploaded" // blob stored, not processed yet
	FileStatusParsing  FileStatus = "parsing"  // extraction in progress
	FileStatusParsed   FileStatus = "parsed"   // invoice created and linked
	FileStatusError    FileStatus = "error"    // terminal failure
)

// InvoiceType distinguishes invoices the business issued from invoices it received.
type InvoiceType string

const (
	InvoiceTypeSales    InvoiceType = "sales"
	InvoiceTypePurchase InvoiceType = "purchase"
)

// Valid reports whether t is one of the known invoice types.
func (t InvoiceType) Valid() bool {
	return t == InvoiceTypeSales || t == InvoiceTypePurchase
}
