package badger

import "errors"

// Repositories bundles every repository sharing one backend.
type Repositories struct {
	Backend    *Backend
	Sources    *SourceTextRepository
	Chunks     *ChunkRepository
	Phrases    *PhraseRepository
	Models     *ModelRepository
	Embeddings *EmbeddingRepository
	Evals      *EvalRepository
	Jobs       *JobRepository
}

// OpenRepositories opens a backend and creates all repositories on it.
// On error everything opened so far is closed.
func OpenRepositories(filePath string, inMemory bool) (*Repositories, error) {
	backend, err := OpenBackend(filePath, inMemory)
	if err != nil {
		return nil, err
	}

	repos := &Repositories{
		Backend:    backend,
		Embeddings: NewEmbeddingRepository(backend),
		Jobs:       NewJobRepository(backend),
	}
	if repos.Sources, err = NewSourceTextRepository(backend); err != nil {
		repos.Close()
		return nil, err
	}
	if repos.Chunks, err = NewChunkRepository(backend); err != nil {
		repos.Close()
		return nil, err
	}
	if repos.Phrases, err = NewPhraseRepository(backend); err != nil {
		repos.Close()
		return nil, err
	}
	if repos.Models, err = NewModelRepository(backend); err != nil {
		repos.Close()
		return nil, err
	}
	if repos.Evals, err = NewEvalRepository(backend); err != nil {
		repos.Close()
		return nil, err
	}
	return repos, nil
}

// Close releases every repository and then the backend.
func (r *Repositories) Close() error {
	var errs []error
	if r.Sources != nil {
		errs = append(errs, r.Sources.Close())
	}
	if r.Chunks != nil {
		errs = append(errs, r.Chunks.Close())
	}
	if r.Phrases != nil {
		errs = append(errs, r.Phrases.Close())
	}
	if r.Models != nil {
		errs = append(errs, r.Models.Close())
	}
	if r.Evals != nil {
		errs = append(errs, r.Evals.Close())
	}
	errs = append(errs, r.Backend.Close())
	return errors.Join(errs...)
}
