package model

// GalleryEntry is an image together with its owner's name and all of its tags.
type GalleryEntry struct {
	Image    UserImage
	Username string
	Tags     []UserImageTag
}

// TagNames returns the entry's tag names in insertion order.
func (e GalleryEntry) TagNames() []string {
	names := make([]string, 0, len(e.Tags))
	for _, t := range e.Tags {
		names = append(names, t.TagName)
	}
	return names
}
