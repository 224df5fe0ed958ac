package types

type Region struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type City struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
