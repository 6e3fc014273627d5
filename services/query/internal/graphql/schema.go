// Package graphql exposes the rating read model as a federated GraphQL
// subgraph. The Product entity extends the catalog's Product type, so a
// federation gateway can stitch rating stats onto product queries.
package graphql

// schemaSDL is the executable schema served by this subgraph.
const schemaSDL = `
	schema {
		query: Query
	}

	directive @key(fields: String!) on OBJECT | INTERFACE
	directive @extends on OBJECT | INTERFACE
	directive @external on FIELD_DEFINITION

	scalar Time
	scalar _Any

	union _Entity = Product

	type _Service {
		sdl: String!
	}

	type Query {
		"Rating statistics for one product, or null when it has no ratings."
		productRatingStats(productId: ID!): ProductRatingStats

		"Products ranked by average rating, best first."
		topRatedProducts(limit: Int): [RankedProduct!]!

		"Products ranked by number of ratings, most first."
		mostReviewedProducts(limit: Int): [RankedProduct!]!

		"Aggregate statistics across all rated products."
		overallRatingStats: OverallRatingStats!

		_service: _Service!
		_entities(representations: [_Any!]!): [_Entity]!
	}

	type Product @key(fields: "id") @extends {
		id: ID! @external
		averageRating: Float
		reviewCount: Int
		ratingStats: ProductRatingStats
	}

	type ProductRatingStats {
		productId: ID!
		averageRating: Float!
		reviewCount: Int!
		ratingDistribution: RatingDistribution!
		lastUpdatedAt: Time!
	}

	type RatingDistribution {
		oneStar: Int!
		twoStar: Int!
		threeStar: Int!
		fourStar: Int!
		fiveStar: Int!
	}

	type RankedProduct {
		productId: ID!
		averageRating: Float!
		reviewCount: Int!
	}

	type OverallRatingStats {
		totalProducts: Int!
		totalReviews: Int!
		averageRating: Float!
	}
`

// federationSDL is what _service.sdl returns to the gateway. It carries only
// the subgraph's own types; the federation machinery types are implied.
const federationSDL = `
	type Query {
		productRatingStats(productId: ID!): ProductRatingStats
		topRatedProducts(limit: Int): [RankedProduct!]!
		mostReviewedProducts(limit: Int): [RankedProduct!]!
		overallRatingStats: OverallRatingStats!
	}

	extend type Product @key(fields: "id") {
		id: ID! @external
		averageRating: Float
		reviewCount: Int
		ratingStats: ProductRatingStats
	}

	type ProductRatingStats {
		productId: ID!
		averageRating: Float!
		reviewCount: Int!
		ratingDistribution: RatingDistribution!
		lastUpdatedAt: Time!
	}

	type RatingDistribution {
		oneStar: Int!
		twoStar: Int!
		threeStar: Int!
		fourStar: Int!
		fiveStar: Int!
	}

	type RankedProduct {
		productId: ID!
		averageRating: Float!
		reviewCount: Int!
	}

	type OverallRatingStats {
		totalProducts: Int!
		totalReviews: Int!
		averageRating: Float!
	}

	scalar Time
`
