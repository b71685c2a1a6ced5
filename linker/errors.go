package linker

import (
	"fmt"

	"github.com/wippyai/wasm-vm/errors"
	"github.com/wippyai/wasm-vm/wasm"
)

var (
	// ErrModuleNotFound matches an import naming an unregistered module.
	ErrModuleNotFound = errors.Sentinel(errors.PhaseLink, errors.KindModuleNotFound)
	// ErrImportNotFound matches an import the named module does not export.
	ErrImportNotFound = errors.Sentinel(errors.PhaseLink, errors.KindImportNotFound)
	// ErrImportTypeMismatch matches an export of the wrong kind or type.
	ErrImportTypeMismatch = errors.Sentinel(errors.PhaseLink, errors.KindImportTypeMismatch)
	// ErrInstantiation matches failures after import resolution: segment
	// initialisation out of bounds and traps in the start function.
	ErrInstantiation = errors.Sentinel(errors.PhaseLink, errors.KindInstantiation)
)

// importError reports a failed import with "module.name" as its path.
func importError(kind errors.Kind, imp wasm.Import, format string, args ...any) error {
	return errors.New(errors.PhaseLink, kind).
		Path(imp.Module, imp.Name).
		Detail(format, args...).
		Build()
}

// instError reports a failure during instantiation. cause may be nil.
func instError(stage string, cause error, format string, args ...any) error {
	return errors.New(errors.PhaseLink, errors.KindInstantiation).
		Path(stage).
		Detail(format, args...).
		Cause(cause).
		Build()
}

func kindName(kind byte) string {
	switch kind {
	case wasm.KindFunc:
		return "func"
	case wasm.KindTable:
		return "table"
	case wasm.KindMemory:
		return "memory"
	case wasm.KindGlobal:
		return "global"
	}
	return fmt.Sprintf("kind(%d)", kind)
}
