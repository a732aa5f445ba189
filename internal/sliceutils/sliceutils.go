package sliceutils

func Map[S any, T any](f func(s S) T, sourceArray []S) []T {
	targetArray := []T{}
	for _, sourceElement := range sourceArray {
		targetElement := f(sourceElement)
		targetArray = append(targetArray, targetElement)
	}
	return targetArray
}

func Filter[T any](f func(t T) bool, sourceArray []T) []T {
	targetArray := []T{}
	for _, sourceElement := range sourceArray {
		if f(sourceElement) {
			targetArray = append(targetArray, sourceElement)
		}
	}
	return targetArray
}

// FindFirst returns a pointer to the first element matching f, or nil.
func FindFirst[T any](f func(t T) bool, sourceArray []T) *T {
	for _, sourceElement := range sourceArray {
		if f(sourceElement) {
			return &sourceElement
		}
	}
	return nil
}
