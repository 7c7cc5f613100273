package main

import "github.com/voteradar/voteradar/cmd/voteradar"

func main() {
	voteradar.Execute()
}
