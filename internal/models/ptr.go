package models

// Ptr returns a pointer to v. Convenient for populating optional fields.
func Ptr[T any](v T) *T {
	return &v
}
