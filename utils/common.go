package utils

func Ptr[T any](t T) *T {
	return &t
}

func EmptyThenNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func DeduplicateSlice[T any](slice []T, idFunc func(t T) string) []T {
	seen := make(map[string]struct{}, len(slice))
	result := make([]T, 0, len(slice))
	for _, item := range slice {
		id := idFunc(item)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, item)
	}
	return result
}
