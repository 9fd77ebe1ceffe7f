// Package server exposes embedding jobs, evaluation runs and comparisons over
// HTTP.
//
// Long-running operations stream their events as server-sent events. Each
// frame is a single line
//
//	data: <json>\n\n
//
// carrying one event in its wire shape. Request validation happens before the
// first frame, so configuration errors are ordinary JSON error responses:
//
//	{"error":{"code":"not_found","message":"unknown embedding model: 7"}}
//
// A client that disconnects cancels the request context; the running job
// stops between batches and the evaluation between phrases.
//
// Endpoints:
//
//	GET /api/v1/embed?modelId=&scope=&batchSize=
//	GET /api/v1/embed-all?scope=&batchSize=
//	GET /api/v1/evaluate?modelId=&rerankerId=&matryoshkaDim=&topK=
//	GET /api/v1/grid?modelId=&sizes=&overlaps=&strategies=&rerankerId=&matryoshkaDim=&topK=
//	GET /api/v1/compare?modelIds=1,2&metric=top1
//	GET /api/v1/compare?all=true&modelIds=1&metric=mrr
//	GET /api/v1/compare?runIds=4,9,12&metric=ndcg
//	GET /api/v1/runs
//	GET /api/v1/runs/:id
//	GET /api/v1/models
//	GET /api/v1/rerankers
//	GET /metrics
package server
