package main

import (
	"net/http"

	"github.com/Conversia-AI/craftable-projection/errx"
)

var cliErrors = errx.NewRegistry("CLI")

var ErrInvalidExclude = cliErrors.Register("INVALID_EXCLUDE", errx.TypeBadRequest, http.StatusBadRequest, "exclude must be a comma separated list of ObjectIDs")
