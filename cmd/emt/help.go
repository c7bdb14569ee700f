package main

import _ "embed"

//go:embed markup.txt
var markupReference string
