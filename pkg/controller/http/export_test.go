package http

var (
	ParseFilterForm = parseFilterForm
	BackTo          = backTo
)
