package elasticsearch

// DefaultIndexName is the default index used for product documents.
const DefaultIndexName = "storefront_products"

// indexMapping uses the Spanish analyzer for titles plus an edge n-gram
// sub-field for search-as-you-type.
const indexMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "analyzer": {
        "autocomplete_analyzer": {
          "type": "custom",
          "tokenizer": "autocomplete_tokenizer",
          "filter": ["lowercase", "asciifolding"]
        },
        "autocomplete_search": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase", "asciifolding"]
        }
      },
      "tokenizer": {
        "autocomplete_tokenizer": {
          "type": "edge_ngram",
          "min_gram": 2,
          "max_gram": 20,
          "token_chars": ["letter", "digit"]
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "id":          { "type": "keyword" },
      "category":    { "type": "keyword" },
      "title":       { "type": "text", "analyzer": "spanish", "fields": { "autocomplete": { "type": "text", "analyzer": "autocomplete_analyzer", "search_analyzer": "autocomplete_search" } } },
      "brand":       { "type": "text", "analyzer": "spanish" },
      "brand_slug":  { "type": "keyword" },
      "types":       { "type": "text", "analyzer": "spanish" },
      "type_slugs":  { "type": "keyword" },
      "colors":      { "type": "text", "analyzer": "spanish" },
      "color_slugs": { "type": "keyword" },
      "sizes":       { "type": "keyword" },
      "price":       { "type": "long" },
      "cover_image": { "type": "keyword", "index": false },
      "updated_at":  { "type": "date" }
    }
  }
}`
