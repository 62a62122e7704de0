package main

import (
	presenced "presenced/app"
)

func main() {
	app := presenced.New(nil, nil)
	app.Start()
}
