package comics

type ListComicsQuery struct {
	Limit     int     `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=500"`
	Offset    int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Publisher *string `query:"publisher" json:"publisher,omitempty" validate:"omitempty,max=300" tstype:"string"`
	Series    *string `query:"series" json:"series,omitempty" validate:"omitempty,max=300" tstype:"string"`
}
