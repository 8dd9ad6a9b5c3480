package domain

// Space is the unit of physical presence. Space management is owned by an
// external collaborator; the core only resolves spaces to validate session
// targets and denormalise the floor.
type Space struct {
	ID        string
	Name      string
	SpaceType *string
	FloorID   *string
}

// Floor groups spaces for aggregation views.
type Floor struct {
	ID          string
	Number      int
	Description *string
}
