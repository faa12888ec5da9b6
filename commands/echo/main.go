// Command echo is a minimal guest plugin: its search returns one result
// whose title repeats the query. Build with
//
//	tinygo build -o plugin.wasm -target=wasip1 -no-debug ./commands/echo
//
// and pack it together with manifest.json using `go_ayoto plugin pack`.
package main

import (
	"fmt"

	"github.com/andrei-cloud/go_ayoto/pkg/media"
	"github.com/andrei-cloud/go_ayoto/pkg/zpeplugin"
)

//export allocate
func allocate(size uint32) uint32 {
	return zpeplugin.Alloc(size)
}

//export deallocate
func deallocate(ptr, _ uint32) {
	zpeplugin.Free(ptr)
}

//export initialize
func initialize() {
	zpeplugin.LogToHost("echo plugin ready")
}

//export zpe_search
func zpeSearch(ptr, length uint32) uint64 {
	return zpeplugin.Handle(ptr, length, search)
}

func search(request []byte) (any, error) {
	req, err := zpeplugin.Decode[media.SearchRequest](request)
	if err != nil {
		return nil, fmt.Errorf("decode search request: %w", err)
	}
	if req.Query == "" {
		return nil, fmt.Errorf("empty query")
	}

	page := req.Page
	if page == 0 {
		page = 1
	}

	return media.AnimeList{
		Items: []media.Anime{{
			ID:    fmt.Sprintf("echo-%d", page),
			Title: "Echo: " + req.Query,
		}},
		CurrentPage: page,
	}, nil
}

func main() {}
