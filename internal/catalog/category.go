package catalog

type Category string

const (
	CategoryBaby        Category = "Bébé"
	CategoryKids        Category = "Enfants"
	CategoryWomen       Category = "Femme"
	CategoryMen         Category = "Homme"
	CategoryLingerie    Category = "Lingerie"
	CategoryAccessories Category = "Accessoires"
)

var categories = map[Category]bool{
	CategoryBaby:        true,
	CategoryKids:        true,
	CategoryWomen:       true,
	CategoryMen:         true,
	CategoryLingerie:    true,
	CategoryAccessories: true,
}

func (c Category) Valid() bool { return categories[c] }

// ParseCategory maps a raw value onto the closed category set.
func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	return c, c.Valid()
}

type Tag string

const (
	TagBabySpringLook  Tag = "Look bébé printemps"
	TagWomenCasualLook Tag = "Look Femme Casual"
	TagGiftIdeas       Tag = "Idées de cadeaux"
)

var tags = map[Tag]bool{
	TagBabySpringLook:  true,
	TagWomenCasualLook: true,
	TagGiftIdeas:       true,
}

func (t Tag) Valid() bool { return tags[t] }
