package model

// IsRecursive reports whether a structure has a member whose shape is the
// structure itself or a list of it. Only direct members are inspected;
// cycles through other structures are not detected.
func IsRecursive(sh *Shape) bool {
	if sh == nil || sh.Kind != KindStructure || sh.Structure == nil {
		return false
	}
	for _, m := range sh.Structure.Members {
		if m.Shape == sh {
			return true
		}
		if m.Shape.Kind == KindList && m.Shape.Element == sh {
			return true
		}
	}
	return false
}
