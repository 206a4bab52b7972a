package constants

// Build flags that gate optional host imports.
const (
	// FlagIterator enables the db_scan/db_next imports.
	FlagIterator = "iterator"
	// FlagDebugPrint enables the legacy debug_print import.
	FlagDebugPrint = "debug-print"
)
