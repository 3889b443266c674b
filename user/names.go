package user

var femaleFirstnames = []string{
	"Adèle", "Agathe", "Alice", "Amélie", "Anaïs", "Anne", "Béatrice", "Camille",
	"Céline", "Chloé", "Claire", "Clémence", "Éloïse", "Élodie", "Emma", "Françoise",
	"Hélène", "Inès", "Irène", "Jeanne", "Joséphine", "Léa", "Louise", "Lucie",
	"Margaux", "Marie", "Marie Christine", "Mathilde", "Noémie", "Océane", "Pénélope",
	"Sophie", "Solène", "Thérèse", "Zoé",
}

var maleFirstnames = []string{
	"Adrien", "Alexandre", "André", "Antoine", "Benoît", "Céleste", "Clément",
	"Damien", "Émile", "Étienne", "François", "Gaël", "Gérard", "Hervé", "Hugo",
	"Jean Baptiste", "Jérôme", "Joël", "Jules", "Léon", "Loïc", "Louis", "Lucas",
	"Mathéo", "Maël", "Nicolas", "Noël", "Raphaël", "Rémi", "Sébastien", "Théo",
	"Valentin", "Yannick",
}

var lastnames = []string{
	"Bernard", "Bertrand", "Bonnet", "Boyer", "Chevalier", "David", "Dubois",
	"Dufour", "Durand", "Faure", "Fontaine", "Fournier", "François", "Garnier",
	"Gauthier", "Girard", "Lambert", "Laurent", "Lefèvre", "Legrand", "Leroy",
	"Mercier", "Michel", "Moreau", "Morel", "Petit", "Roussel", "Rousseau",
	"Simon", "Thomas", "Vincent", "Le Gall", "De La Tour", "Hébert", "Périer",
}
