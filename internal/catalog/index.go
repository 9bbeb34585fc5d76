package catalog

import (
	"github.com/Maggerino21/ai-component-extractor/internal"
	"github.com/Maggerino21/ai-component-extractor/internal/util"
)

// Index holds the lookup structures the matcher works against: exact part
// number, component type buckets and a token index over product names.
type Index struct {
	ProductsByID       map[int]internal.ProductRecord
	ByPartNumber       map[string][]internal.ProductRecord
	ByType             map[internal.ComponentType][]int
	TokenToProductIDs  map[string]map[int]struct{}
	NormalizedNameByID map[int]string
}

func BuildIndex(products []internal.ProductRecord) *Index {
	idx := &Index{
		ProductsByID:       map[int]internal.ProductRecord{},
		ByPartNumber:       map[string][]internal.ProductRecord{},
		ByType:             map[internal.ComponentType][]int{},
		TokenToProductIDs:  map[string]map[int]struct{}{},
		NormalizedNameByID: map[int]string{},
	}

	for _, p := range products {
		idx.ProductsByID[p.ID] = p
		normName := util.NormalizeText(p.Name)
		idx.NormalizedNameByID[p.ID] = normName
		idx.ByType[p.Type] = append(idx.ByType[p.Type], p.ID)

		if p.PartNumber != nil {
			if code := util.NormalizeCode(*p.PartNumber); code != "" {
				idx.ByPartNumber[code] = append(idx.ByPartNumber[code], p)
			}
		}

		for _, token := range util.Tokenize(p.Name) {
			if _, ok := idx.TokenToProductIDs[token]; !ok {
				idx.TokenToProductIDs[token] = map[int]struct{}{}
			}
			idx.TokenToProductIDs[token][p.ID] = struct{}{}
		}
	}

	return idx
}
