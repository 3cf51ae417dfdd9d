package embeddings

// localModels lists the sentence-transformers models the huggingface tier
// runs in-process, with their output sizes.
var localModels = map[string]int{
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
}

const defaultLocalModel = "sentence-transformers/all-MiniLM-L6-v2"

func localModelDimension(model string) (int, bool) {
	dim, ok := localModels[model]
	return dim, ok
}
