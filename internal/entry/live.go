package entry

// Live entity mirrors: structured world state tracked by the host
// application, consumed by retrieval as a supplementary entry source.
// They are never written back to the persisted entry store.

type LiveCharacter struct {
	Name        string
	Description string
	Disposition string
	Active      bool
}

type LiveLocation struct {
	Name        string
	Description string
	Current     bool
	VisitCount  int
}

type LiveItem struct {
	Name        string
	Description string
	InInventory bool
	Equipped    bool
}

type LiveWorldState struct {
	Characters []LiveCharacter
	Locations  []LiveLocation
	Items      []LiveItem
}
